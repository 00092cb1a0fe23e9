package domain

import (
	"errors"
	"fmt"
)

// 业务错误（HTTP 层统一映射状态码）
var (
	ErrNotFound                 = errors.New("not found")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrInvalidToken             = errors.New("invalid token")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrUserAlreadyExists        = errors.New("email already registered")
	ErrCompanyAlreadyRegistered = errors.New("name already registered")
	ErrCannotOperate            = errors.New("cannot operate")
	ErrPasswordTooLong          = errors.New("password exceeds maximum length")
	ErrInvalidInput             = errors.New("invalid input")
)

// Unauthorized 的细分场景，errors.Is(err, ErrUnauthorized) 依然成立
var (
	ErrAdminRequired    = fmt.Errorf("%w: admin role required", ErrUnauthorized)
	ErrSelfDelete       = fmt.Errorf("%w: you are not allowed to delete your own account", ErrUnauthorized)
	ErrNotAdminNorOwner = fmt.Errorf("%w: you don't have enough permission to perform this action", ErrUnauthorized)
)
