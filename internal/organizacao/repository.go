package organizacao

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound é retornado quando nenhum registro é encontrado.
var ErrNotFound = errors.New("organização não encontrada")

const organizacaoColumns = "id, nome, cnpj, responsavel, telefone, email, endereco, status, created_at, updated_at"

// Repository provê acesso ao armazenamento de organizações.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria um novo repositório de organizações.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create insere a organização e devolve os dados persistidos.
func (r *Repository) Create(ctx context.Context, input CreateInput) (*Organizacao, error) {
	const query = `
        INSERT INTO organizacoes (nome, cnpj, responsavel, telefone, email, endereco, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING ` + organizacaoColumns

	row := r.pool.QueryRow(ctx, query,
		input.Nome,
		input.CNPJ,
		input.Responsavel,
		input.Telefone,
		input.Email,
		input.Endereco,
		StatusAtivo,
	)
	return scanOrganizacao(row)
}

// GetByID busca organização pelo identificador.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Organizacao, error) {
	const query = `SELECT ` + organizacaoColumns + ` FROM organizacoes WHERE id = $1`
	return scanOrganizacao(r.pool.QueryRow(ctx, query, id))
}

// GetByNome busca organização pelo nome exato.
func (r *Repository) GetByNome(ctx context.Context, nome string) (*Organizacao, error) {
	const query = `SELECT ` + organizacaoColumns + ` FROM organizacoes WHERE nome = $1`
	return scanOrganizacao(r.pool.QueryRow(ctx, query, nome))
}

// GetByCNPJ busca organização pelo CNPJ exato.
func (r *Repository) GetByCNPJ(ctx context.Context, cnpj string) (*Organizacao, error) {
	const query = `SELECT ` + organizacaoColumns + ` FROM organizacoes WHERE cnpj = $1`
	return scanOrganizacao(r.pool.QueryRow(ctx, query, cnpj))
}

// List devolve organizações aplicando filtros e ordenação.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Organizacao, error) {
	var (
		conds []string
		args  []any
	)

	if filters.Nome != "" {
		args = append(args, "%"+filters.Nome+"%")
		conds = append(conds, fmt.Sprintf("nome ILIKE $%d", len(args)))
	}
	if filters.Responsavel != "" {
		args = append(args, "%"+filters.Responsavel+"%")
		conds = append(conds, fmt.Sprintf("responsavel ILIKE $%d", len(args)))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + organizacaoColumns + ` FROM organizacoes`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if strings.EqualFold(filters.Order, "createdat") {
		query += " ORDER BY created_at DESC"
	} else {
		query += " ORDER BY nome ASC"
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []Organizacao
	for rows.Next() {
		org, err := scanOrganizacao(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, *org)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return orgs, nil
}

// Update aplica apenas os campos presentes e devolve o registro atualizado.
func (r *Repository) Update(ctx context.Context, id int64, input UpdateInput) (*Organizacao, error) {
	var (
		sets []string
		args []any
	)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if input.Nome != nil {
		add("nome", *input.Nome)
	}
	if input.Responsavel != nil {
		add("responsavel", *input.Responsavel)
	}
	if input.Telefone != nil {
		add("telefone", *input.Telefone)
	}
	if input.Email != nil {
		add("email", *input.Email)
	}
	if input.Endereco != nil {
		if *input.Endereco == "" {
			args = append(args, nil)
			sets = append(sets, fmt.Sprintf("endereco = $%d", len(args)))
		} else {
			add("endereco", *input.Endereco)
		}
	}
	if input.Status != nil {
		add("status", *input.Status)
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	sets = append(sets, "updated_at = now()")
	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE organizacoes SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), organizacaoColumns,
	)

	return scanOrganizacao(r.pool.QueryRow(ctx, query, args...))
}

// UpdateStatus altera somente o status (exclusão lógica).
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status string) (*Organizacao, error) {
	const query = `
        UPDATE organizacoes
        SET status = $2, updated_at = now()
        WHERE id = $1
        RETURNING ` + organizacaoColumns

	return scanOrganizacao(r.pool.QueryRow(ctx, query, id, status))
}

// Delete remove fisicamente a organização e devolve o registro excluído.
func (r *Repository) Delete(ctx context.Context, id int64) (*Organizacao, error) {
	const query = `DELETE FROM organizacoes WHERE id = $1 RETURNING ` + organizacaoColumns
	return scanOrganizacao(r.pool.QueryRow(ctx, query, id))
}

// CountTorneios conta torneios vinculados à organização.
func (r *Repository) CountTorneios(ctx context.Context, orgID int64) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM torneios WHERE organizacao_id = $1`, orgID)
}

// CountEquipes conta equipes vinculadas à organização.
func (r *Repository) CountEquipes(ctx context.Context, orgID int64) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM equipes WHERE organizacao_id = $1`, orgID)
}

// CountAtletas conta atletas cujas equipes pertencem à organização.
func (r *Repository) CountAtletas(ctx context.Context, orgID int64) (int64, error) {
	const query = `
        SELECT COUNT(*)
        FROM atletas a
        JOIN equipes e ON e.id = a.equipe_id
        WHERE e.organizacao_id = $1
    `
	return r.count(ctx, query, orgID)
}

func (r *Repository) count(ctx context.Context, query string, orgID int64) (int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, query, orgID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func scanOrganizacao(row pgx.Row) (*Organizacao, error) {
	var org Organizacao
	err := row.Scan(
		&org.ID,
		&org.Nome,
		&org.CNPJ,
		&org.Responsavel,
		&org.Telefone,
		&org.Email,
		&org.Endereco,
		&org.Status,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}
