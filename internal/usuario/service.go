package usuario

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/versusesportes/api/internal/apperr"
	"github.com/versusesportes/api/internal/auth"
	"github.com/versusesportes/api/internal/util"
)

// Política de bloqueio: na quarta falha consecutiva a conta trava por 15
// minutos; o desbloqueio é avaliado de forma preguiçosa na tentativa seguinte.
const (
	maxFailedAttempts = 4
	lockDuration      = 15 * time.Minute
)

// TxRepository é o acesso a dados disponível dentro de uma transação.
type TxRepository interface {
	GetByID(ctx context.Context, id int64) (*Usuario, error)
	GetByEmail(ctx context.Context, email string) (*Usuario, error)
	Create(ctx context.Context, nome, email, senhaHash string) (*Usuario, error)
	CreatePerfil(ctx context.Context, usuarioID int64, papel string, organizacaoID, equipeID *int64) (*PerfilUsuario, error)
	GetPerfilByUsuario(ctx context.Context, usuarioID int64) (*PerfilUsuario, error)
	GetEquipeByID(ctx context.Context, id int64) (*Equipe, error)
	Update(ctx context.Context, id int64, changes UsuarioChanges) (*Usuario, error)
	UpdatePerfil(ctx context.Context, perfilID int64, changes PerfilChanges) (*PerfilUsuario, error)
}

type repository interface {
	TxRepository
	InTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	List(ctx context.Context, filters ListFilters) ([]UsuarioResumo, error)
	ListVinculos(ctx context.Context, usuarioID int64) ([]Vinculo, error)
	UpdateLoginControl(ctx context.Context, id int64, failedAttempts int, lockedUntil *time.Time) error
	GetEquipeByID(ctx context.Context, id int64) (*Equipe, error)
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Service concentra regras de ciclo de vida de usuários e autenticação.
type Service struct {
	repo       repository
	redis      redisCommander
	jwt        *auth.JWTManager
	refreshTTL time.Duration
}

// NewService cria novo serviço.
func NewService(repo *Repository, redisClient *redis.Client, jwtMgr *auth.JWTManager, refreshTTL time.Duration) *Service {
	return &Service{repo: repo, redis: redisClient, jwt: jwtMgr, refreshTTL: refreshTTL}
}

// Create cadastra usuário e seu perfil inicial numa única transação.
func (s *Service) Create(ctx context.Context, input CreateInput, requester Requester) (*CreateResult, error) {
	nome := strings.TrimSpace(input.Nome)
	if err := util.RequireString(nome, "Nome completo"); err != nil {
		return nil, apperr.InvalidInput(err.Error())
	}
	if err := util.ValidateEmail(input.Email); err != nil {
		return nil, apperr.InvalidInput(err.Error())
	}
	if err := util.ValidateSenha(input.Senha); err != nil {
		return nil, apperr.InvalidInput(err.Error())
	}
	papel := strings.ToUpper(strings.TrimSpace(input.Papel))
	if papel != PapelADM && papel != PapelORG && papel != PapelTEC {
		return nil, apperr.InvalidInput("Papel inválido. Deve ser ADM, ORG ou TEC")
	}

	requesterRole := strings.ToUpper(strings.TrimSpace(requester.Role))
	if requesterRole == "" {
		return nil, apperr.Unauthorized("Role do solicitante é obrigatório no corpo da requisição (requester.role)")
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))

	// Pré-checagem de unicidade; a constraint do banco decide em caso de corrida.
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("Email já cadastrado")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if papel == PapelORG && requesterRole != PapelADM {
		return nil, apperr.Forbidden("Apenas Administradores podem criar usuários com papel ORG")
	}

	if papel == PapelTEC && input.EquipeID == nil {
		return nil, apperr.InvalidInput("Equipe é obrigatória para papel TEC")
	}

	if papel == PapelTEC && requesterRole == PapelORG {
		if requester.OrganizacaoID == nil {
			return nil, apperr.InvalidInput("Informar organizacao do criador no corpo da requisição (requester.organizacaoId)")
		}
		equipe, err := s.repo.GetEquipeByID(ctx, *input.EquipeID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, apperr.InvalidInput("Equipe informada não existe")
			}
			return nil, err
		}
		if equipe.OrganizacaoID != *requester.OrganizacaoID {
			return nil, apperr.Forbidden("Organização do criador não corresponde à organização da equipe")
		}
	}

	senhaHash, err := auth.Hash(input.Senha)
	if err != nil {
		return nil, err
	}

	var result CreateResult
	err = s.repo.InTx(ctx, func(txCtx context.Context, tx TxRepository) error {
		user, err := tx.Create(txCtx, nome, email, senhaHash)
		if err != nil {
			return mapUniqueViolation(err)
		}

		perfil, err := tx.CreatePerfil(txCtx, user.ID, papel, input.OrganizacaoID, input.EquipeID)
		if err != nil {
			return mapUniqueViolation(err)
		}

		result = CreateResult{Usuario: publicUsuario(user), Perfil: publicPerfil(perfil)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// Authenticate valida credenciais aplicando a política de bloqueio e devolve
// o usuário com vínculos, o JWT de acesso e um refresh token opaco.
//
// A mensagem de falha é deliberadamente genérica: não revela se o e-mail
// existe ou se a senha está errada.
func (s *Service) Authenticate(ctx context.Context, input LoginInput) (*LoginResult, error) {
	senha := input.Senha
	if senha == "" {
		senha = input.Password
	}

	if err := util.ValidateEmail(input.Email); err != nil {
		return nil, apperr.InvalidCredentials("Email ou senha inválidos")
	}
	if err := util.ValidateSenha(senha); err != nil {
		return nil, apperr.InvalidCredentials("Email ou senha inválidos")
	}

	user, err := s.repo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn().Msg("login: usuário não encontrado")
			return nil, apperr.InvalidCredentials("Email ou senha inválidos")
		}
		return nil, err
	}

	if user.Status == StatusInativo {
		return nil, apperr.Forbidden("Conta desativada")
	}

	now := util.Now()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		return nil, apperr.AccountLocked("Conta bloqueada devido a múltiplas tentativas. Tente mais tarde.")
	}

	ok, err := auth.Verify(senha, user.SenhaHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: verificação de senha falhou")
		return nil, apperr.InvalidCredentials("Email ou senha inválidos")
	}
	if !ok {
		attempts := user.FailedAttempts + 1
		var lockedUntil *time.Time
		if attempts >= maxFailedAttempts {
			t := now.Add(lockDuration)
			lockedUntil = &t
		}
		if err := s.repo.UpdateLoginControl(ctx, user.ID, attempts, lockedUntil); err != nil {
			return nil, err
		}
		log.Warn().Int("attempts", attempts).Msg("login: senha inválida")
		return nil, apperr.InvalidCredentials("Email ou senha inválidos")
	}

	if err := s.repo.UpdateLoginControl(ctx, user.ID, 0, nil); err != nil {
		return nil, err
	}

	return s.buildLoginResult(ctx, user)
}

// List devolve a projeção pública dos usuários. Somente ADM enxerga contas
// inativas; para qualquer outro solicitante o filtro de status é forçado
// para ativo.
func (s *Service) List(ctx context.Context, filters ListFilters, requester Requester) ([]UsuarioResumo, error) {
	status := strings.ToLower(strings.TrimSpace(filters.Status))

	if strings.ToUpper(strings.TrimSpace(requester.Role)) == PapelADM {
		if status != StatusAtivo && status != StatusInativo {
			status = ""
		}
	} else {
		status = StatusAtivo
	}

	return s.repo.List(ctx, ListFilters{Nome: filters.Nome, Status: status})
}

// Update edita usuário e perfil validando o estado final resultante, tudo
// dentro de uma única transação para evitar corridas entre as leituras de
// revalidação e a escrita.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput, requester Requester) (*UpdateResult, error) {
	requesterRole := strings.ToUpper(strings.TrimSpace(requester.Role))
	if requesterRole == "" {
		return nil, apperr.Unauthorized("Role do solicitante é obrigatório no corpo da requisição (requester.role)")
	}

	var result UpdateResult
	err := s.repo.InTx(ctx, func(txCtx context.Context, tx TxRepository) error {
		user, err := tx.GetByID(txCtx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return apperr.NotFound("Usuário não encontrado")
			}
			return err
		}

		perfil, err := tx.GetPerfilByUsuario(txCtx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Usuário sem perfil é inconsistência de dados; exposto como 404.
				return apperr.NotFound("Perfil do usuário não encontrado")
			}
			return err
		}

		// Estado alvo: campos informados sobrepostos aos atuais. As regras de
		// negócio valem para o resultado, não apenas para o delta.
		targetPapel := perfil.Papel
		if input.Papel != nil {
			p := strings.ToUpper(strings.TrimSpace(*input.Papel))
			if p != PapelADM && p != PapelORG && p != PapelTEC {
				return apperr.InvalidInput("Papel inválido. Deve ser ADM, ORG ou TEC")
			}
			targetPapel = p
		}

		targetEquipeID := perfil.EquipeID
		if input.EquipeID != nil {
			targetEquipeID = input.EquipeID
		}

		targetOrgID := perfil.OrganizacaoID
		if input.OrganizacaoID != nil {
			targetOrgID = input.OrganizacaoID
		}

		if targetPapel == PapelORG && requesterRole != PapelADM {
			return apperr.Forbidden("Apenas Administradores podem atribuir o papel ORG")
		}

		if targetPapel == PapelTEC {
			if targetEquipeID == nil {
				return apperr.InvalidInput("Equipe é obrigatória para papel TEC")
			}

			equipeMudou := input.EquipeID != nil && (perfil.EquipeID == nil || *perfil.EquipeID != *input.EquipeID)
			virouTEC := perfil.Papel != PapelTEC
			if requesterRole == PapelORG && (equipeMudou || virouTEC) {
				if requester.OrganizacaoID == nil {
					return apperr.InvalidInput("Informar organizacao do solicitante (requester.organizacaoId)")
				}
				equipe, err := tx.GetEquipeByID(txCtx, *targetEquipeID)
				if err != nil {
					if errors.Is(err, ErrNotFound) {
						return apperr.InvalidInput("Equipe informada não existe")
					}
					return err
				}
				if equipe.OrganizacaoID != *requester.OrganizacaoID {
					return apperr.Forbidden("Organização do solicitante não corresponde à organização da equipe")
				}
			}
		} else {
			// Quem deixa de ser TEC perde o vínculo de equipe.
			targetEquipeID = nil
		}

		var userChanges UsuarioChanges

		if input.Nome != nil {
			nome := strings.TrimSpace(*input.Nome)
			if nome == "" {
				return apperr.InvalidInput("Nome não pode ser vazio")
			}
			if nome != user.Nome {
				userChanges.Nome = &nome
			}
		}

		if input.Email != nil {
			if err := util.ValidateEmail(*input.Email); err != nil {
				return apperr.InvalidInput(err.Error())
			}
			email := strings.ToLower(strings.TrimSpace(*input.Email))
			if email != user.Email {
				if existing, err := tx.GetByEmail(txCtx, email); err == nil && existing.ID != id {
					return apperr.Conflict("Email já cadastrado")
				} else if err != nil && !errors.Is(err, ErrNotFound) {
					return err
				}
				userChanges.Email = &email
			}
		}

		if input.Senha != nil {
			if err := util.ValidateSenha(*input.Senha); err != nil {
				return apperr.InvalidInput(err.Error())
			}
			hash, err := auth.Hash(*input.Senha)
			if err != nil {
				return err
			}
			userChanges.SenhaHash = &hash
		}

		if input.Status != nil {
			st := strings.ToLower(strings.TrimSpace(*input.Status))
			if st != StatusAtivo && st != StatusInativo {
				return apperr.InvalidInput(`Status inválido. Use "ativo" ou "inativo"`)
			}
			if requester.ID != nil && *requester.ID == id {
				return apperr.Forbidden("Não é permitido alterar o próprio status")
			}
			if requesterRole == PapelORG {
				dentroDaOrg := targetOrgID != nil && requester.OrganizacaoID != nil && *targetOrgID == *requester.OrganizacaoID
				if targetPapel != PapelTEC || !dentroDaOrg {
					return apperr.Forbidden("ORG só pode alterar status de técnicos da própria organização")
				}
			}
			if st != user.Status {
				userChanges.Status = &st
			}
		}

		var perfilChanges PerfilChanges

		if targetPapel != perfil.Papel {
			perfilChanges.Papel = &targetPapel
		}
		if !sameID(targetEquipeID, perfil.EquipeID) {
			perfilChanges.SetEquipe = true
			perfilChanges.EquipeID = targetEquipeID
		}
		if !sameID(targetOrgID, perfil.OrganizacaoID) {
			perfilChanges.SetOrganizacao = true
			perfilChanges.OrganizacaoID = targetOrgID
		}

		if userChanges == (UsuarioChanges{}) && perfilChanges == (PerfilChanges{}) {
			return apperr.NoOpUpdate("Nenhuma alteração informada")
		}

		updatedUser, err := tx.Update(txCtx, id, userChanges)
		if err != nil {
			return mapUniqueViolation(err)
		}

		updatedPerfil, err := tx.UpdatePerfil(txCtx, perfil.ID, perfilChanges)
		if err != nil {
			return err
		}

		result = UpdateResult{Usuario: publicUsuario(updatedUser), Perfil: publicPerfil(updatedPerfil)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// Refresh troca um refresh token válido por novos tokens.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*LoginResult, error) {
	if rawToken == "" {
		return nil, apperr.Unauthorized(auth.ErrInvalidRefresh.Error())
	}

	hash := auth.HashRefreshToken(rawToken)
	key := auth.RefreshRedisKey(hash)

	subject, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, apperr.Unauthorized(auth.ErrInvalidRefresh.Error())
	}
	if err != nil {
		return nil, err
	}

	userID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return nil, apperr.Unauthorized(auth.ErrInvalidRefresh.Error())
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.Unauthorized(auth.ErrInvalidRefresh.Error())
		}
		return nil, err
	}
	if user.Status == StatusInativo {
		return nil, apperr.Forbidden("Conta desativada")
	}

	// Rotação: o token usado deixa de valer junto com a emissão do novo.
	if err := s.redis.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return nil, err
	}

	return s.buildLoginResult(ctx, user)
}

// Logout revoga o refresh token atual; tokens de acesso expiram sozinhos.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	key := auth.RefreshRedisKey(auth.HashRefreshToken(rawToken))
	if err := s.redis.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

func (s *Service) buildLoginResult(ctx context.Context, user *Usuario) (*LoginResult, error) {
	vinculos, err := s.repo.ListVinculos(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if vinculos == nil {
		vinculos = []Vinculo{}
	}

	papeis := make([]string, 0, len(vinculos))
	for _, v := range vinculos {
		papeis = append(papeis, v.Papel)
	}

	token, err := s.jwt.GenerateAccessToken(user.ID, user.Email, papeis)
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	key := auth.RefreshRedisKey(refreshHash)
	if err := s.redis.Set(ctx, key, strconv.FormatInt(user.ID, 10), s.refreshTTL).Err(); err != nil {
		return nil, err
	}

	return &LoginResult{
		User:         publicUsuario(user),
		Perfis:       vinculos,
		Token:        token,
		RefreshToken: rawRefresh,
	}, nil
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.Contains(pgErr.ConstraintName, "perfis") {
			return apperr.Conflict("Usuário já possui perfil cadastrado")
		}
		return apperr.Conflict("Email já cadastrado")
	}
	return err
}
