package util

import (
	"errors"
	"regexp"
	"strings"
)

var (
	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	// CNPJ no formato NN.NNN.NNN/NNNN-NN.
	cnpjRegex = regexp.MustCompile(`^\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}$`)
	// Telefone com DDD: (11) 99999-9999 ou 9999-9999.
	telefoneRegex = regexp.MustCompile(`^\(?\d{2}\)?\s?\d{4,5}-?\d{4}$`)
	senhaRegex    = regexp.MustCompile(`^[A-Za-z\d]{8,}$`)
	letraRegex    = regexp.MustCompile(`[A-Za-z]`)
	digitoRegex   = regexp.MustCompile(`\d`)
)

// ValidateEmail retorna erro para e-mails inválidos.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || !emailRegex.MatchString(email) {
		return errors.New("Email inválido")
	}
	return nil
}

// ValidateSenha verifica requisitos mínimos de senha: 8 caracteres
// alfanuméricos, pelo menos uma letra e um número.
func ValidateSenha(senha string) error {
	if !senhaRegex.MatchString(senha) || !letraRegex.MatchString(senha) || !digitoRegex.MatchString(senha) {
		return errors.New("Senha inválida. Mínimo 8 caracteres, pelo menos letras e números")
	}
	return nil
}

// ValidateCNPJ exige o formato pontuado completo.
func ValidateCNPJ(cnpj string) error {
	if !cnpjRegex.MatchString(strings.TrimSpace(cnpj)) {
		return errors.New("CNPJ inválido. Use o formato NN.NNN.NNN/NNNN-NN")
	}
	return nil
}

// ValidateTelefone aceita número fixo ou celular, com ou sem parênteses no DDD.
func ValidateTelefone(telefone string) error {
	if !telefoneRegex.MatchString(strings.TrimSpace(telefone)) {
		return errors.New("Telefone inválido. Informe DDD, ex: (11) 99999-9999")
	}
	return nil
}

// RequireString garante string não vazia.
func RequireString(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New(field + " é obrigatório")
	}
	return nil
}
