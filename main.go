package main

import (
	"os"

	"github.com/DawnLiExp/Me2Comic-sub000/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
