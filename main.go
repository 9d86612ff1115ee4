package main

import "github.com/audiolibrelab/voicediary/cmd"

func main() {
	cmd.Execute()
}
