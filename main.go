package main

import "github.com/base/task-signing-tool/cmd"

func main() {
	cmd.Execute()
}
