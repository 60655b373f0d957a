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

package main

import (
	"flag"
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	bms "github.com/BareMetalStorage/bms-ec/pkg"
	"github.com/BareMetalStorage/bms-ec/pkg/ec"
)

func main() {

	bmsOpts := bms.BindFlags(flag.CommandLine)
	ecOpts := ec.BindFlags(flag.CommandLine)

	// Console encoding on a terminal, JSON otherwise.
	zapOpts := zap.Options{
		Development: isatty.IsTerminal(os.Stdout.Fd()),
		TimeEncoder: zapcore.ISO8601TimeEncoder,
	}
	zapOpts.BindFlags(flag.CommandLine)

	flag.Parse()

	logger := zap.New(zap.UseFlagOptions(&zapOpts))

	c := bms.NewController(bmsOpts.WithLogger(logger))

	if err := c.Init(ecOpts); err != nil {
		logger.Error(err, "Controller failed to initialize")
		os.Exit(1)
	}

	logger.Info("Controller running", "name", c.Name, "port", c.Port)

	if err := c.Run(); err != nil {
		logger.Error(err, "Controller exited with error")
		os.Exit(1)
	}
}
