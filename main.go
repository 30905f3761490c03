package main

import "github.com/dispatchsim/dispatchsim/cmd"

func main() {
	cmd.Execute()
}
