package main

import "github.com/rhodrigo081/doare.back/cmd"

func main() {
	cmd.Execute()
}
