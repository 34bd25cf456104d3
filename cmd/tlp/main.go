package main

import "github.com/OpenTraceLab/OpenTraceTLP/cmd/tlp/cmd"

func main() {
	cmd.Execute()
}
