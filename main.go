package main

import "github.com/ValentinKolb/sockdev/cmd"

func main() {
	cmd.Execute()
}
