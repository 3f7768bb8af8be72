package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "pressgen"}

	root.AddCommand(serveCMD(), migrateCMD(), generateCMD())
	_ = root.Execute()
}
