package main

import (
	"fmt"
	"os"

	"github.com/versusesportes/api/internal/auth"
	"github.com/versusesportes/api/internal/util"
)

// Gera um hash Argon2id para semear o primeiro usuário ADM via SQL.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "uso: hashpass <senha>")
		os.Exit(1)
	}

	senha := os.Args[1]
	if err := util.ValidateSenha(senha); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	hash, err := auth.Hash(senha)
	if err != nil {
		fmt.Fprintf(os.Stderr, "erro ao gerar hash: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
