package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [wallet_id]",
	Short: "触发钱包历史回填",
	Long:  `让服务端拉取钱包所有活跃地址的链上历史，发现的新交易会入库并发事件。`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := callAPI("POST", "/api/v1/wallets/"+args[0]+"/sync", nil); err != nil {
			fmt.Printf("请求失败: %v\n", err)
			os.Exit(1)
		}
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [wallet_id]",
	Short: "查询交易历史",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		chain, _ := cmd.Flags().GetString("chain")
		path := "/api/v1/transactions?wallet_id=" + args[0]
		if chain != "" {
			path += "&chain=" + chain
		}
		if err := callAPI("GET", path, nil); err != nil {
			fmt.Printf("请求失败: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("chain", "", "按链过滤")
}
