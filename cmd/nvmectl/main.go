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
	"github.com/alecthomas/kong"
	log "github.com/sirupsen/logrus"
)

var cli struct {
	Verbose bool `kong:"optional,help='Enable verbose logging.'"`

	Bringup BringupCmd `kong:"cmd,help='Bring up the controller and report its identity.'"`
	IdCtrl  IdCtrlCmd  `kong:"cmd,help='Identify Controller.'"`
	ListNs  ListNsCmd  `kong:"cmd,help='List namespaces.'"`
	Read    ReadCmd    `kong:"cmd,help='Read blocks from a namespace.'"`
	Write   WriteCmd   `kong:"cmd,help='Write blocks to a namespace.'"`
}

func main() {
	c := kong.Parse(&cli)

	if cli.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	err := c.Run()
	c.FatalIfErrorf(err)
}
