package main

import "github.com/nati-d/email-automation-ai-agent-sub000/cmd"

func main() {
	cmd.Execute()
}
