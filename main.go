package main

import "github.com/ValentinKolb/kvd/cmd"

func main() {
	cmd.Execute()
}
