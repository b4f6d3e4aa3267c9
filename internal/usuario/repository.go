package usuario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/versusesportes/api/internal/db"
	"github.com/versusesportes/api/internal/organizacao"
)

// ErrNotFound é retornado quando nenhum registro é encontrado.
var ErrNotFound = errors.New("usuário não encontrado")

const usuarioColumns = "id, nome, email, senha_hash, status, failed_attempts, locked_until, created_at, updated_at"

const perfilColumns = "id, usuario_id, papel, organizacao_id, equipe_id, created_at"

// querier é satisfeito por *pgxpool.Pool e por pgx.Tx, permitindo reusar as
// mesmas consultas dentro e fora de transação.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository provê acesso ao armazenamento de usuários e perfis.
type Repository struct {
	pool *pgxpool.Pool
	q    querier
}

// NewRepository cria um novo repositório de usuários.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: pool}
}

// InTx executa fn com um repositório escopado a uma transação; leituras de
// revalidação e escritas enxergam o mesmo snapshot e confirmam juntas.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		return fn(txCtx, &Repository{pool: r.pool, q: tx})
	})
}

// GetByEmail busca usuário pelo e-mail normalizado.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Usuario, error) {
	const query = `SELECT ` + usuarioColumns + ` FROM usuarios WHERE email = $1`
	return scanUsuario(r.q.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

// GetByID busca usuário pelo identificador.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Usuario, error) {
	const query = `SELECT ` + usuarioColumns + ` FROM usuarios WHERE id = $1`
	return scanUsuario(r.q.QueryRow(ctx, query, id))
}

// List devolve a projeção pública dos usuários, ordenada por nome.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]UsuarioResumo, error) {
	var (
		conds []string
		args  []any
	)

	if filters.Nome != "" {
		args = append(args, "%"+filters.Nome+"%")
		conds = append(conds, fmt.Sprintf("nome ILIKE $%d", len(args)))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT id, nome, email, status FROM usuarios`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY nome ASC"

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usuarios []UsuarioResumo
	for rows.Next() {
		var u UsuarioResumo
		if err := rows.Scan(&u.ID, &u.Nome, &u.Email, &u.Status); err != nil {
			return nil, err
		}
		usuarios = append(usuarios, u)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return usuarios, nil
}

// Create insere o usuário com status ativo.
func (r *Repository) Create(ctx context.Context, nome, email, senhaHash string) (*Usuario, error) {
	const query = `
        INSERT INTO usuarios (nome, email, senha_hash, status)
        VALUES ($1, $2, $3, $4)
        RETURNING ` + usuarioColumns

	return scanUsuario(r.q.QueryRow(ctx, query, nome, email, senhaHash, StatusAtivo))
}

// CreatePerfil insere o perfil único do usuário.
func (r *Repository) CreatePerfil(ctx context.Context, usuarioID int64, papel string, organizacaoID, equipeID *int64) (*PerfilUsuario, error) {
	const query = `
        INSERT INTO perfis_usuario (usuario_id, papel, organizacao_id, equipe_id)
        VALUES ($1, $2, $3, $4)
        RETURNING ` + perfilColumns

	return scanPerfil(r.q.QueryRow(ctx, query, usuarioID, papel, organizacaoID, equipeID))
}

// GetPerfilByUsuario devolve o perfil do usuário.
func (r *Repository) GetPerfilByUsuario(ctx context.Context, usuarioID int64) (*PerfilUsuario, error) {
	const query = `SELECT ` + perfilColumns + ` FROM perfis_usuario WHERE usuario_id = $1`
	return scanPerfil(r.q.QueryRow(ctx, query, usuarioID))
}

// GetEquipeByID busca equipe pelo identificador.
func (r *Repository) GetEquipeByID(ctx context.Context, id int64) (*Equipe, error) {
	const query = `SELECT id, nome, organizacao_id FROM equipes WHERE id = $1`

	var e Equipe
	if err := r.q.QueryRow(ctx, query, id).Scan(&e.ID, &e.Nome, &e.OrganizacaoID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Update aplica as colunas presentes e devolve o usuário atualizado.
func (r *Repository) Update(ctx context.Context, id int64, changes UsuarioChanges) (*Usuario, error) {
	var (
		sets []string
		args []any
	)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if changes.Nome != nil {
		add("nome", *changes.Nome)
	}
	if changes.Email != nil {
		add("email", *changes.Email)
	}
	if changes.SenhaHash != nil {
		add("senha_hash", *changes.SenhaHash)
	}
	if changes.Status != nil {
		add("status", *changes.Status)
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	sets = append(sets, "updated_at = now()")
	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE usuarios SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), usuarioColumns,
	)

	return scanUsuario(r.q.QueryRow(ctx, query, args...))
}

// UpdatePerfil aplica as colunas presentes e devolve o perfil atualizado.
func (r *Repository) UpdatePerfil(ctx context.Context, perfilID int64, changes PerfilChanges) (*PerfilUsuario, error) {
	var (
		sets []string
		args []any
	)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if changes.Papel != nil {
		add("papel", *changes.Papel)
	}
	if changes.SetOrganizacao {
		add("organizacao_id", changes.OrganizacaoID)
	}
	if changes.SetEquipe {
		add("equipe_id", changes.EquipeID)
	}

	if len(sets) == 0 {
		const query = `SELECT ` + perfilColumns + ` FROM perfis_usuario WHERE id = $1`
		return scanPerfil(r.q.QueryRow(ctx, query, perfilID))
	}

	args = append(args, perfilID)
	query := fmt.Sprintf(
		"UPDATE perfis_usuario SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), perfilColumns,
	)

	return scanPerfil(r.q.QueryRow(ctx, query, args...))
}

// UpdateLoginControl grava o contador de falhas e o instante de desbloqueio.
func (r *Repository) UpdateLoginControl(ctx context.Context, id int64, failedAttempts int, lockedUntil *time.Time) error {
	const query = `
        UPDATE usuarios
        SET failed_attempts = $2, locked_until = $3, updated_at = now()
        WHERE id = $1
    `

	tag, err := r.q.Exec(ctx, query, id, failedAttempts, lockedUntil)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListVinculos devolve os perfis do usuário com organização e equipe.
func (r *Repository) ListVinculos(ctx context.Context, usuarioID int64) ([]Vinculo, error) {
	const query = `
        SELECT p.papel,
               o.id, o.nome, o.cnpj, o.responsavel, o.telefone, o.email, o.endereco, o.status, o.created_at, o.updated_at,
               e.id, e.nome, e.organizacao_id
        FROM perfis_usuario p
        LEFT JOIN organizacoes o ON o.id = p.organizacao_id
        LEFT JOIN equipes e ON e.id = p.equipe_id
        WHERE p.usuario_id = $1
        ORDER BY p.created_at ASC
    `

	rows, err := r.q.Query(ctx, query, usuarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vinculos []Vinculo
	for rows.Next() {
		var (
			v Vinculo

			orgID          *int64
			orgNome        *string
			orgCNPJ        *string
			orgResponsavel *string
			orgTelefone    *string
			orgEmail       *string
			orgEndereco    *string
			orgStatus      *string
			orgCreatedAt   *time.Time
			orgUpdatedAt   *time.Time

			equipeID    *int64
			equipeNome  *string
			equipeOrgID *int64
		)

		err := rows.Scan(
			&v.Papel,
			&orgID, &orgNome, &orgCNPJ, &orgResponsavel, &orgTelefone, &orgEmail, &orgEndereco, &orgStatus, &orgCreatedAt, &orgUpdatedAt,
			&equipeID, &equipeNome, &equipeOrgID,
		)
		if err != nil {
			return nil, err
		}

		if orgID != nil {
			v.Organizacao = &organizacao.Organizacao{
				ID:          *orgID,
				Nome:        *orgNome,
				CNPJ:        *orgCNPJ,
				Responsavel: *orgResponsavel,
				Telefone:    *orgTelefone,
				Email:       *orgEmail,
				Endereco:    orgEndereco,
				Status:      *orgStatus,
				CreatedAt:   *orgCreatedAt,
				UpdatedAt:   *orgUpdatedAt,
			}
		}
		if equipeID != nil {
			v.Equipe = &Equipe{
				ID:            *equipeID,
				Nome:          *equipeNome,
				OrganizacaoID: *equipeOrgID,
			}
		}

		vinculos = append(vinculos, v)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return vinculos, nil
}

func scanUsuario(row pgx.Row) (*Usuario, error) {
	var u Usuario
	err := row.Scan(
		&u.ID,
		&u.Nome,
		&u.Email,
		&u.SenhaHash,
		&u.Status,
		&u.FailedAttempts,
		&u.LockedUntil,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func scanPerfil(row pgx.Row) (*PerfilUsuario, error) {
	var p PerfilUsuario
	err := row.Scan(
		&p.ID,
		&p.UsuarioID,
		&p.Papel,
		&p.OrganizacaoID,
		&p.EquipeID,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
