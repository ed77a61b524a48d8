package authinfra

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"

	"github.com/Abraxas-365/identity/pkg/iam/directory"
)

// bcryptMaxInput is the longest input bcrypt accepts.
const bcryptMaxInput = 72

// BcryptPasswordService hashes passwords and client secrets with bcrypt.
// Inputs longer than 72 bytes (generated client secrets) are reduced to
// their hex SHA-256 first.
type BcryptPasswordService struct {
	cost int
}

var _ directory.PasswordHasher = (*BcryptPasswordService)(nil)

func NewBcryptPasswordService(cost int) *BcryptPasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPasswordService{cost: cost}
}

func (s *BcryptPasswordService) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword(prepare(plain), s.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *BcryptPasswordService) Compare(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), prepare(plain)) == nil
}

func prepare(plain string) []byte {
	if len(plain) <= bcryptMaxInput {
		return []byte(plain)
	}
	sum := sha256.Sum256([]byte(plain))
	return []byte(hex.EncodeToString(sum[:]))
}
