package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "kommissar",
		Short: "Persona-driven chat participant with a moderation roster",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and start the operator HTTP surface",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}

	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
