// Package crypto implements the chat server's login key exchange: a half
// Diffie-Hellman agreement against the server's fixed public value, followed
// by a modified-TEA encryption of the login challenge.
package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
)

// Fixed exchange parameters published by the chat server.
var (
	dhPrime, _ = new(big.Int).SetString(
		"eca2e8c85d863dcdc26a429a71a9815ad052f6139669dd659f98ae159d313d13"+
			"c6bf2838e10a69b6478b64a24bd054ba8248e8fa778703b418408249440b2c1e"+
			"dd28853e240d8a7e49540b76d120d3b1ad2878b1b99490eb4a2a5e84caa8a91c"+
			"ecbdb1aa7c816e8be343246f80c637abc653b893fd91686cf8d32d6cfe5f2a6f", 16)
	dhGenerator = big.NewInt(5)
	dhServerPub, _ = new(big.Int).SetString(
		"9c32cc23d559ca90fc31be72df817d0e124769e809f936bc14360ff4bed758f2"+
			"60a0d596584eacbbc2b88bdd410416163e11dbf62173393fbc0c6fefb2d855f1"+
			"a03dec8e9f105bbad91b3437d8eb73fe2f44159597aa4053cf788d2f9d7012fb"+
			"8d7c4ce3876f7d6cd5d0c31754f4cd96166708641958de54a6def5657b9f2e92", 16)

	// Private exponents are drawn from [0, 2^256).
	dhExpLimit = new(big.Int).Lsh(big.NewInt(1), 256)
)

const teaDelta = 0x9E3779B9

// GenerateLoginKey computes the login key for a LoginRequest packet from the
// server-provided seed and the account credentials.
func GenerateLoginKey(serverSeed, username, password string) (string, error) {
	return generateLoginKey(serverSeed, username, password, rand.Reader)
}

// generateLoginKey takes the entropy source explicitly so tests can pin the
// private exponent and challenge prefix.
func generateLoginKey(serverSeed, username, password string, entropy io.Reader) (string, error) {
	x, err := rand.Int(entropy, dhExpLimit)
	if err != nil {
		return "", fmt.Errorf("crypto: draw exponent: %w", err)
	}
	public := new(big.Int).Exp(dhGenerator, x, dhPrime)
	shared := new(big.Int).Exp(dhServerPub, x, dhPrime)

	sharedHex := shared.Text(16)
	if len(sharedHex) < 32 {
		return "", fmt.Errorf("crypto: shared secret too short")
	}
	keyHex := sharedHex[:32]

	challenge := username + "|" + serverSeed + "|" + password

	var prefix [8]byte
	if _, err := io.ReadFull(entropy, prefix[:]); err != nil {
		return "", fmt.Errorf("crypto: draw prefix: %w", err)
	}

	plain := make([]byte, 0, 12+len(challenge)+7)
	plain = append(plain, prefix[:]...)
	plain = binary.BigEndian.AppendUint32(plain, uint32(len(challenge)))
	plain = append(plain, challenge...)
	for len(plain)%8 != 0 {
		plain = append(plain, ' ')
	}

	cipherHex, err := encrypt(keyHex, plain)
	if err != nil {
		return "", err
	}
	return public.Text(16) + "-" + cipherHex, nil
}

// encrypt runs the modified-TEA block cipher over the padded plaintext with
// CBC-style chaining. Key and data words are read little-endian, matching
// the byte swap the server applies around each 32-bit word.
func encrypt(keyHex string, plain []byte) (string, error) {
	if len(plain)%8 != 0 {
		return "", fmt.Errorf("crypto: plaintext length %d not a multiple of 8", len(plain))
	}
	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil || len(keyBytes) != 16 {
		return "", fmt.Errorf("crypto: bad cipher key")
	}
	var key [4]uint32
	for i := range key {
		key[i] = binary.LittleEndian.Uint32(keyBytes[i*4:])
	}

	out := make([]byte, 0, len(plain))
	var prev0, prev1 uint32
	for i := 0; i < len(plain); i += 8 {
		v0 := binary.LittleEndian.Uint32(plain[i:]) ^ prev0
		v1 := binary.LittleEndian.Uint32(plain[i+4:]) ^ prev1
		prev0, prev1 = teaRounds(v0, v1, key)
		out = binary.LittleEndian.AppendUint32(out, prev0)
		out = binary.LittleEndian.AppendUint32(out, prev1)
	}
	return hex.EncodeToString(out), nil
}

func teaRounds(v0, v1 uint32, key [4]uint32) (uint32, uint32) {
	var sum uint32
	for i := 0; i < 32; i++ {
		sum += teaDelta
		v0 += ((v1 << 4) + key[0]) ^ (v1 + sum) ^ ((v1 >> 5) + key[1])
		v1 += ((v0 << 4) + key[2]) ^ (v0 + sum) ^ ((v0 >> 5) + key[3])
	}
	return v0, v1
}
