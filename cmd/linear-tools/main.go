/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"github.com/ssargent/lineartools/cmd/linear-tools/cmd"
)

func main() {
	cmd.Execute()
}
