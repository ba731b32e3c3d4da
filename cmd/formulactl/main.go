package main

import "github.com/oshokin/formula-resolver/cmd/formulactl/cmd"

func main() {
	cmd.Execute()
}
