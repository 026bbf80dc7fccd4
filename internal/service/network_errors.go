package service

import (
	"context"
	"errors"
	"strings"

	"tcees-validator/internal/domain"
	apperrors "tcees-validator/pkg/errors"
)

type networkRule struct {
	markers []string
	code    string
	message string
}

// networkRules are checked in order against the upper-cased error text
var networkRules = []networkRule{
	{
		markers: []string{"ERR_TUNNEL_CONNECTION_FAILED"},
		code:    domain.CodeNetworkBlocked,
		message: "Servidor hospedado sem acesso ao site do TCEES (ERR_TUNNEL_CONNECTION_FAILED). " +
			"Isso costuma ocorrer por restrição de rede/proxy/allowlist.",
	},
	{
		markers: []string{"ERR_NAME_NOT_RESOLVED"},
		code:    domain.CodeDNS,
		message: "Falha de DNS ao resolver o domínio do TCEES no servidor hospedado.",
	},
	{
		markers: []string{"ERR_CONNECTION_TIMED_OUT", "TIMEOUT"},
		code:    domain.CodeTimeout,
		message: "Tempo limite ao conectar no site do TCEES a partir do servidor hospedado.",
	},
	{
		markers: []string{"ERR_CONNECTION_REFUSED"},
		code:    domain.CodeConnectionRefused,
		message: "Conexão recusada ao acessar o TCEES no servidor hospedado. " +
			"Pode ser bloqueio de rede/firewall/allowlist.",
	},
	{
		markers: []string{"ERR_CONNECTION_CLOSED"},
		code:    domain.CodeConnectionClosed,
		message: "Conexão encerrada pelo destino/rede ao tentar acessar o TCEES.",
	},
}

// ClassifyPortalError maps a browser or network failure to a coded application error
func ClassifyPortalError(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}

	upper := strings.ToUpper(err.Error())
	if errors.Is(err, context.DeadlineExceeded) {
		upper += " TIMEOUT"
	}

	for _, rule := range networkRules {
		if containsAny(upper, rule.markers) {
			return apperrors.NewNetworkError(rule.message, err).WithCode(rule.code)
		}
	}

	return apperrors.NewProcessingError(err.Error(), err).WithCode(domain.CodeValidationFailure)
}
