package utxo

import (
	"errors"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

// btcd 只内置 bitcoin 的网络参数。litecoin / dogecoin 地址版本字节
// 不同，这里补一份最小参数表并注册，btcutil.DecodeAddress 才能识别。
var litecoinParams = chaincfg.Params{
	Name:             "litecoin",
	Net:              wire.BitcoinNet(0xdbb6c0fb),
	PubKeyHashAddrID: 0x30,
	ScriptHashAddrID: 0x32,
	PrivateKeyID:     0xb0,
	Bech32HRPSegwit:  "ltc",
	HDCoinType:       2,
}

var dogecoinParams = chaincfg.Params{
	Name:             "dogecoin",
	Net:              wire.BitcoinNet(0xc0c0c0c0),
	PubKeyHashAddrID: 0x1e,
	ScriptHashAddrID: 0x16,
	PrivateKeyID:     0x9e,
	HDCoinType:       3,
}

var chainParams = map[string]*chaincfg.Params{
	"bitcoin":  &chaincfg.MainNetParams,
	"litecoin": &litecoinParams,
	"dogecoin": &dogecoinParams,
}

func init() {
	for _, params := range []*chaincfg.Params{&litecoinParams, &dogecoinParams} {
		if err := chaincfg.Register(params); err != nil && !errors.Is(err, chaincfg.ErrDuplicateNet) {
			panic(err)
		}
	}
}
