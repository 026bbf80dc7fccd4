package domain

import "strings"

// CheckStatus is the state of one conformity indicator as rendered by the portal
type CheckStatus int

const (
	StatusUnknown CheckStatus = iota
	StatusPassed
	StatusFailed
)

// CheckCount is the number of indicators shown on the portal results page
const CheckCount = 8

// Indicator positions on the results page, left to right
const (
	CheckExtension = iota
	CheckPassword
	CheckFileSize
	CheckPageSize
	CheckSignature
	CheckAuthenticity
	CheckSearchable
	CheckFinal
)

// String returns the signature character for the status
func (s CheckStatus) String() string {
	switch s {
	case StatusPassed:
		return "1"
	case StatusFailed:
		return "0"
	default:
		return "?"
	}
}

// Statuses is an ordered read of the portal indicators
type Statuses []CheckStatus

// Resolved counts the statuses that are not unknown
func (s Statuses) Resolved() int {
	n := 0
	for _, st := range s {
		if st != StatusUnknown {
			n++
		}
	}
	return n
}

// Signature encodes the statuses so two reads can be compared
func (s Statuses) Signature() string {
	if len(s) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, st := range s {
		b.WriteString(st.String())
	}
	return b.String()
}

// Verdict is the overall outcome reported in resultado_final
type Verdict string

const (
	VerdictValid   Verdict = "VALIDADO"
	VerdictInvalid Verdict = "NÃO VALIDADO"
	VerdictError   Verdict = "ERRO"
)

// Error codes returned in erro_codigo
const (
	CodeAuth              = "AUTH_ERROR"
	CodeNoFile            = "NO_FILE"
	CodeNotPDF            = "NOT_PDF"
	CodeFileTooLarge      = "FILE_TOO_LARGE"
	CodeTooManyFiles      = "TOO_MANY_FILES"
	CodeFileNotFound      = "FILE_NOT_FOUND"
	CodeNetworkBlocked    = "TCEES_NETWORK_BLOCKED"
	CodeDNS               = "TCEES_DNS_ERROR"
	CodeTimeout           = "TCEES_TIMEOUT"
	CodeConnectionRefused = "TCEES_CONNECTION_REFUSED"
	CodeConnectionClosed  = "TCEES_CONNECTION_CLOSED"
	CodeValidationFailure = "TCEES_VALIDATION_ERROR"
)

const (
	// DefaultPortalURL is the TCEES conformity checker
	DefaultPortalURL = "https://conformidadepdf.tcees.tc.br/"
	ServiceName      = "tcees-validator"

	// DateLayout formats data_validacao
	DateLayout = "2006-01-02 15:04:05"

	// BaseCheckCount is the number of indicators that feed the score
	BaseCheckCount = 7

	// MaxBatchSize caps how many documents one batch validates
	MaxBatchSize = 3

	NotSignedMessage   = "Arquivo não assinado"
	UnparseableMessage = "Não foi possível interpretar a resposta do TCEES."
)

// ValidationResult is the flat record returned for one document.
// JSON names match what the calling application already consumes.
type ValidationResult struct {
	FileName            string           `json:"nome_arquivo"`
	SizeBytes           int64            `json:"tamanho_bytes"`
	ValidatedAt         string           `json:"data_validacao,omitempty"`
	ValidExtension      bool             `json:"extensao_valida"`
	NoPassword          bool             `json:"sem_senha"`
	FileSizeOK          bool             `json:"tamanho_arquivo_ok"`
	PageSizeOK          bool             `json:"tamanho_pagina_ok"`
	Signed              bool             `json:"assinado"`
	SignatureCount      int              `json:"numero_assinaturas"`
	AuthenticityOK      bool             `json:"autenticidade_ok"`
	IntegrityOK         bool             `json:"integridade_ok"`
	Searchable          bool             `json:"pesquisavel"`
	Verdict             Verdict          `json:"resultado_final"`
	Score               int              `json:"pontuacao"`
	CertificateHolder   string           `json:"titular_certificado"`
	CertificateIssuer   string           `json:"emissor_certificado"`
	CertificateValidity string           `json:"validade_certificado"`
	Message             string           `json:"mensagem_erro"`
	Error               string           `json:"erro,omitempty"`
	ErrorCode           string           `json:"erro_codigo,omitempty"`
	TechnicalError      string           `json:"erro_tecnico,omitempty"`
	Preflight           *PreflightReport `json:"analise_local,omitempty"`
}

// BaseChecks returns the seven indicators that make up the score
func (r *ValidationResult) BaseChecks() []bool {
	return []bool{
		r.ValidExtension,
		r.NoPassword,
		r.FileSizeOK,
		r.PageSizeOK,
		r.Signed,
		r.AuthenticityOK,
		r.Searchable,
	}
}

// NewErrorResult builds the record returned when validation could not run
func NewErrorResult(fileName, message, code, technical string) *ValidationResult {
	return &ValidationResult{
		FileName:       fileName,
		Verdict:        VerdictError,
		Error:          message,
		ErrorCode:      code,
		TechnicalError: technical,
	}
}

// PreflightReport holds facts read locally from the PDF
type PreflightReport struct {
	PageCount   int     `json:"paginas"`
	Encrypted   bool    `json:"protegido_por_senha"`
	Searchable  bool    `json:"texto_extraivel"`
	MaxWidthPt  float64 `json:"maior_largura_pt"`
	MaxHeightPt float64 `json:"maior_altura_pt"`
	Error       string  `json:"erro,omitempty"`
}
