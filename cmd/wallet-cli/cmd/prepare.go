package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "构建未签名交易 (Online)",
	Long:  `向服务端提交转账参数，返回意向 ID 和待签名数据。拿到数据后在离线环境签名。`,
	Run: func(cmd *cobra.Command, args []string) {
		walletID, _ := cmd.Flags().GetString("wallet")
		chain, _ := cmd.Flags().GetString("chain")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		amount, _ := cmd.Flags().GetString("amount")
		priority, _ := cmd.Flags().GetString("priority")

		err := callAPI("POST", "/api/v1/transactions/prepare", map[string]interface{}{
			"wallet_id":    walletID,
			"chain":        chain,
			"from_address": from,
			"to_address":   to,
			"amount":       amount,
			"priority":     priority,
		})
		if err != nil {
			fmt.Printf("请求失败: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(prepareCmd)
	prepareCmd.Flags().String("wallet", "", "钱包 ID")
	prepareCmd.Flags().String("chain", "ethereum", "链标识")
	prepareCmd.Flags().String("from", "", "付款地址 (必须已登记)")
	prepareCmd.Flags().String("to", "", "收款地址")
	prepareCmd.Flags().String("amount", "", "转账金额 (自然单位，如 0.5)")
	prepareCmd.Flags().String("priority", "medium", "费用档位: low / medium / high")
	prepareCmd.MarkFlagRequired("wallet")
	prepareCmd.MarkFlagRequired("from")
	prepareCmd.MarkFlagRequired("to")
	prepareCmd.MarkFlagRequired("amount")
}
