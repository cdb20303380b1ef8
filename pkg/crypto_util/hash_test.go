package crypto_util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateSHA256(t *testing.T) {
	// 已知向量: sha256("abc")
	got := CalculateSHA256([]byte("abc"))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", got)
}

func TestCalculateKeccak256(t *testing.T) {
	// ERC-20 Transfer 事件签名的 topic hash，链上扫描依赖这个值
	got := CalculateKeccak256([]byte("Transfer(address,address,uint256)"))
	assert.Equal(t, "ddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", got)
}

func TestCalculateBlake3(t *testing.T) {
	a := CalculateBlake3([]byte("hello"))
	b := CalculateBlake3([]byte("hello"))
	c := CalculateBlake3([]byte("world"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestSignAndVerifyHMACSHA256(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"event":"transaction.confirmed","wallet_id":1}`)

	sig := SignHMACSHA256(secret, body)
	assert.Len(t, sig, 64)
	assert.True(t, VerifyHMACSHA256(secret, body, sig))
	assert.False(t, VerifyHMACSHA256(secret, []byte("tampered"), sig))
	assert.False(t, VerifyHMACSHA256("wrong_secret", body, sig))
}
