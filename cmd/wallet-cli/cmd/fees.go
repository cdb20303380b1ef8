package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var feesCmd = &cobra.Command{
	Use:   "fees [chain]",
	Short: "查询费用档位",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := callAPI("GET", "/api/v1/fees/"+args[0], nil); err != nil {
			fmt.Printf("请求失败: %v\n", err)
			os.Exit(1)
		}
	},
}

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "列出支持的链",
	Run: func(cmd *cobra.Command, args []string) {
		if err := callAPI("GET", "/api/v1/chains", nil); err != nil {
			fmt.Printf("请求失败: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(feesCmd)
	rootCmd.AddCommand(chainsCmd)
}
