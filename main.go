package main

import "imagecompare/cmd"

func main() {
	cmd.Execute()
}
