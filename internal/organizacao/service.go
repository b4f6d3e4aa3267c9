package organizacao

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/errgroup"

	"github.com/versusesportes/api/internal/apperr"
	"github.com/versusesportes/api/internal/util"
)

type repository interface {
	Create(ctx context.Context, input CreateInput) (*Organizacao, error)
	GetByID(ctx context.Context, id int64) (*Organizacao, error)
	GetByNome(ctx context.Context, nome string) (*Organizacao, error)
	GetByCNPJ(ctx context.Context, cnpj string) (*Organizacao, error)
	List(ctx context.Context, filters ListFilters) ([]Organizacao, error)
	Update(ctx context.Context, id int64, input UpdateInput) (*Organizacao, error)
	UpdateStatus(ctx context.Context, id int64, status string) (*Organizacao, error)
	Delete(ctx context.Context, id int64) (*Organizacao, error)
	CountTorneios(ctx context.Context, orgID int64) (int64, error)
	CountEquipes(ctx context.Context, orgID int64) (int64, error)
	CountAtletas(ctx context.Context, orgID int64) (int64, error)
}

// Service concentra as regras de ciclo de vida de organizações.
type Service struct {
	repo repository
}

// NewService cria novo serviço.
func NewService(repo repository) *Service {
	return &Service{repo: repo}
}

// Create cadastra uma organização ativa após validar formato e unicidade.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Organizacao, error) {
	input.Nome = strings.TrimSpace(input.Nome)
	input.CNPJ = strings.TrimSpace(input.CNPJ)
	input.Responsavel = strings.TrimSpace(input.Responsavel)
	input.Telefone = strings.TrimSpace(input.Telefone)
	input.Email = strings.TrimSpace(input.Email)

	if err := util.RequireString(input.Nome, "Nome"); err != nil {
		return nil, apperr.InvalidInput(err.Error())
	}
	if err := util.RequireString(input.CNPJ, "CNPJ"); err != nil {
		return nil, apperr.InvalidInput(err.Error())
	}
	if err := util.ValidateCNPJ(input.CNPJ); err != nil {
		return nil, apperr.InvalidInput(err.Error())
	}
	if err := util.RequireString(input.Responsavel, "Responsável"); err != nil {
		return nil, apperr.InvalidInput(err.Error())
	}
	if err := util.ValidateTelefone(input.Telefone); err != nil {
		return nil, apperr.InvalidInput(err.Error())
	}
	if err := util.ValidateEmail(input.Email); err != nil {
		return nil, apperr.InvalidInput(err.Error())
	}

	if input.Endereco != nil {
		endereco := strings.TrimSpace(*input.Endereco)
		if endereco == "" {
			input.Endereco = nil
		} else {
			input.Endereco = &endereco
		}
	}

	// Pré-checagens de unicidade; a constraint do banco continua sendo a
	// garantia definitiva contra corridas (mapeada para Conflict abaixo).
	if err := s.ensureNomeLivre(ctx, input.Nome); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByCNPJ(ctx, input.CNPJ); err == nil {
		return nil, apperr.Conflict("Já existe uma organização com este CNPJ")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	org, err := s.repo.Create(ctx, input)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return org, nil
}

// List consulta organizações com filtros opcionais.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Organizacao, error) {
	status := strings.ToUpper(strings.TrimSpace(filters.Status))
	if status != StatusAtivo && status != StatusInativo {
		// Filtro de status fora do domínio é ignorado.
		status = ""
	}
	filters.Status = status

	return s.repo.List(ctx, filters)
}

// GetByID devolve a organização ou NotFound.
func (s *Service) GetByID(ctx context.Context, id int64) (*Organizacao, error) {
	org, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("Organização não encontrada.")
		}
		return nil, err
	}
	return org, nil
}

// Update edita os campos presentes; somente ADM pode editar, e renomear exige
// que não existam torneios vinculados.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput, requesterRole string) (*Organizacao, error) {
	if strings.ToUpper(strings.TrimSpace(requesterRole)) != "ADM" {
		return nil, apperr.Forbidden("Apenas ADM pode editar organização")
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("Organização não encontrada")
		}
		return nil, err
	}

	var changes UpdateInput

	if input.Responsavel != nil {
		v := strings.TrimSpace(*input.Responsavel)
		if v == "" {
			return nil, apperr.InvalidInput("Responsável não pode ser vazio")
		}
		changes.Responsavel = &v
	}
	if input.Email != nil {
		v := strings.TrimSpace(*input.Email)
		if err := util.ValidateEmail(v); err != nil {
			return nil, apperr.InvalidInput(err.Error())
		}
		changes.Email = &v
	}
	if input.Telefone != nil {
		v := strings.TrimSpace(*input.Telefone)
		if err := util.ValidateTelefone(v); err != nil {
			return nil, apperr.InvalidInput(err.Error())
		}
		changes.Telefone = &v
	}
	if input.Endereco != nil {
		v := strings.TrimSpace(*input.Endereco)
		changes.Endereco = &v
	}
	if input.Status != nil {
		st := strings.ToUpper(strings.TrimSpace(*input.Status))
		if st != StatusAtivo && st != StatusInativo {
			return nil, apperr.InvalidInput(`Status inválido. Use "ATIVO" ou "INATIVO"`)
		}
		changes.Status = &st
	}

	if input.Nome != nil {
		novoNome := strings.TrimSpace(*input.Nome)
		if novoNome == "" {
			return nil, apperr.InvalidInput("Nome não pode ser vazio")
		}
		if novoNome != existing.Nome {
			torneios, err := s.repo.CountTorneios(ctx, id)
			if err != nil {
				return nil, err
			}
			if torneios > 0 {
				return nil, apperr.InvalidInput("Não é permitido renomear organização com torneios vinculados")
			}
			if err := s.ensureNomeLivre(ctx, novoNome); err != nil {
				return nil, err
			}
			changes.Nome = &novoNome
		}
	}

	if changes == (UpdateInput{}) {
		return existing, nil
	}

	org, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return org, nil
}

// Delete remove fisicamente quando não há dependências; caso contrário aplica
// exclusão lógica, idempotente para organizações já inativas.
func (s *Service) Delete(ctx context.Context, id int64) (*Organizacao, error) {
	org, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("Organização não encontrada")
		}
		return nil, err
	}

	// As três contagens são independentes entre si e podem rodar em paralelo.
	var torneios, equipes, atletas int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		torneios, err = s.repo.CountTorneios(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		equipes, err = s.repo.CountEquipes(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		atletas, err = s.repo.CountAtletas(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if torneios+equipes+atletas == 0 {
		return s.repo.Delete(ctx, id)
	}

	if org.Status == StatusInativo {
		return org, nil
	}
	return s.repo.UpdateStatus(ctx, id, StatusInativo)
}

func (s *Service) ensureNomeLivre(ctx context.Context, nome string) error {
	if _, err := s.repo.GetByNome(ctx, nome); err == nil {
		return apperr.Conflict("Já existe uma organização com este nome")
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.Contains(pgErr.ConstraintName, "cnpj") {
			return apperr.Conflict("Já existe uma organização com este CNPJ")
		}
		return apperr.Conflict("Já existe uma organização com este nome")
	}
	return err
}
