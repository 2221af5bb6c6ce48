/*
	Copyright 2023 Markus Papenbrock
*/

package main

import "github.com/mpapenbr/docflow-session-go/cmd"

func main() {
	cmd.Execute()
}
