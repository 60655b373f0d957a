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

package server

import (
	"errors"
	"testing"
)

func TestMockMountLifecycle(t *testing.T) {
	ctrl := MockServerControllerProvider{}.NewServerController(ServerControllerOptions{})

	if err := ctrl.Mount("/dev/bms0n1", "/mnt/vol0", "ext4"); err != nil {
		t.Fatal(err)
	}

	if mounted, _ := ctrl.IsMounted("/mnt/vol0"); !mounted {
		t.Fatal("mountpoint not recorded")
	}

	if err := ctrl.Mount("/dev/bms0n2", "/mnt/vol0", "ext4"); !errors.Is(err, ErrAlreadyMounted) {
		t.Fatalf("expected ErrAlreadyMounted, got %v", err)
	}

	if err := ctrl.Unmount("/mnt/vol0"); err != nil {
		t.Fatal(err)
	}

	if err := ctrl.Unmount("/mnt/vol0"); !errors.Is(err, ErrNotMounted) {
		t.Fatalf("expected ErrNotMounted, got %v", err)
	}
}
