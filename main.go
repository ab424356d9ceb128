package main

import "syncthat/cmd"

func main() {
	cmd.Execute()
}
