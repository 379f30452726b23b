package main

import "github.com/oshokin/step-alarm/cmd/stepalarm/cmd"

func main() {
	cmd.Execute()
}
