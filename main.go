// Copyright © 2026 The ELPS authors

package main

import "github.com/luthersystems/v8bridge/cmd"

func main() {
	cmd.Execute()
}
