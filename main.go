package main

import "github.com/weatherkeep/apiserver/cmd"

func main() {
	cmd.Execute()
}
