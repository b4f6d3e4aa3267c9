package organizacao

import "time"

// Status possíveis de uma organização.
const (
	StatusAtivo   = "ATIVO"
	StatusInativo = "INATIVO"
)

// Organizacao representa uma entidade esportiva (federação, associação ou
// clube) dona de equipes e torneios.
type Organizacao struct {
	ID          int64     `json:"id"`
	Nome        string    `json:"nome"`
	CNPJ        string    `json:"cnpj"`
	Responsavel string    `json:"responsavel"`
	Telefone    string    `json:"telefone"`
	Email       string    `json:"email"`
	Endereco    *string   `json:"endereco"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateInput agrupa os campos aceitos no cadastro.
type CreateInput struct {
	Nome        string
	CNPJ        string
	Responsavel string
	Telefone    string
	Email       string
	Endereco    *string
}

// UpdateInput usa ponteiros para distinguir campo ausente de campo vazio.
type UpdateInput struct {
	Nome        *string
	Responsavel *string
	Telefone    *string
	Email       *string
	Endereco    *string
	Status      *string
}

// ListFilters descreve filtros e ordenação da consulta.
type ListFilters struct {
	Nome        string
	Responsavel string
	Status      string
	Order       string
}
