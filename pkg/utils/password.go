package utils

import "golang.org/x/crypto/bcrypt"

// PasswordCost 固定的 bcrypt 成本
const PasswordCost = 12

func HashPassword(pw string) (string, error) { return HashPasswordCost(pw, PasswordCost) }

// HashPasswordCost 仅供测试与种子数据降低成本
func HashPasswordCost(pw string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(pw, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pw)) == nil
}
