/*
 * Copyright 2020, 2021, 2022 Hewlett Packard Enterprise Development LP
 * Other additional copyright holders may be indicated within.
 *
 * The entirety of this work is licensed under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 *
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package storage

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/senseyeio/duration"
	"gopkg.in/yaml.v2"
)

//go:embed config.yaml
var configFile []byte

// Timeout is an ISO 8601 duration in the config file.
type Timeout struct {
	time.Duration
}

func (t *Timeout) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var text string
	if err := unmarshal(&text); err != nil {
		return err
	}

	d, err := duration.ParseISO8601(text)
	if err != nil {
		return fmt.Errorf("timeout %q: %w", text, err)
	}

	// Calendar components have no fixed length; config timeouts are
	// time-of-day scale only.
	if d.Y != 0 || d.M != 0 || d.W != 0 || d.D != 0 {
		return fmt.Errorf("timeout %q: date components not supported", text)
	}

	now := time.Now()
	t.Duration = d.Shift(now).Sub(now)
	return nil
}

type QueueConfig struct {
	Count int
	Depth int
}

type TimeoutConfig struct {
	Bringup Timeout
	Command Timeout
}

type StorageConfig struct {
	Devices  []string `yaml:",flow"`
	Queues   QueueConfig
	Timeouts TimeoutConfig
}

type ConfigFile struct {
	Version  string
	Metadata struct {
		Name string
	}
	Storage StorageConfig
}

func loadConfig() (*ConfigFile, error) {
	var config = new(ConfigFile)
	if err := yaml.Unmarshal(configFile, config); err != nil {
		return config, err
	}

	return config, nil
}
