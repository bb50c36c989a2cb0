package main

import "github.com/ValentinKolb/dFlux/cmd"

func main() {
	cmd.Execute()
}
