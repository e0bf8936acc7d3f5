// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package htmlfmt_test

import (
	"fmt"

	"github.com/aiku/chatkit-stream-sync/pkg/connector/htmlfmt"
)

func ExampleText() {
	fmt.Println(htmlfmt.Text("text/html", "<strong>hello</strong> <em>world</em>"))
	fmt.Println(htmlfmt.Text("text/plain", "<strong>as is</strong>"))
	// Output:
	// **hello** _world_
	// <strong>as is</strong>
}
