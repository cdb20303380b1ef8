package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var broadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "提交已签名交易 (Online)",
	Long:  `读取签名产物 (文件或参数)，凭意向 ID 提交给服务端广播。`,
	Run: func(cmd *cobra.Command, args []string) {
		walletID, _ := cmd.Flags().GetString("wallet")
		intentID, _ := cmd.Flags().GetString("intent")
		payload, _ := cmd.Flags().GetString("payload")
		inputFile, _ := cmd.Flags().GetString("input")

		if payload == "" && inputFile != "" {
			data, err := os.ReadFile(inputFile)
			if err != nil {
				fmt.Printf("读取文件失败: %v\n", err)
				os.Exit(1)
			}
			payload = strings.TrimSpace(string(data))
		}
		if payload == "" {
			fmt.Println("需要 --payload 或 --input 提供签名数据")
			os.Exit(1)
		}

		err := callAPI("POST", "/api/v1/transactions/broadcast", map[string]interface{}{
			"wallet_id":      walletID,
			"intent_id":      intentID,
			"signed_payload": payload,
		})
		if err != nil {
			fmt.Printf("请求失败: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(broadcastCmd)
	broadcastCmd.Flags().String("wallet", "", "钱包 ID")
	broadcastCmd.Flags().String("intent", "", "prepare 返回的意向 ID")
	broadcastCmd.Flags().String("payload", "", "已签名交易 (hex 或 base64)")
	broadcastCmd.Flags().StringP("input", "i", "", "已签名交易文件")
	broadcastCmd.MarkFlagRequired("wallet")
	broadcastCmd.MarkFlagRequired("intent")
}
