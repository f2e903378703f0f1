package main

import "github.com/kargonusa/freight-core/internal/cmd"

func main() {
	cmd.Execute()
}
