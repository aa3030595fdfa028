package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "duet",
	Short: "Duet — shared life organizer for couples",
	Long:  "Duet is the backend for a couples' shared organizer: a joint calendar, tasks, shopping lists, habits, partner requests, and the points that make keeping up with all of it a game.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: configs/duet.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
