// Package fserr defines the single failure type surfaced by the file system.
//
// Every error carries a Code from a fixed taxonomy. Callers match on codes
// with errors.Is against the exported sentinels, or read the code directly
// with CodeOf.
package fserr

import (
	"errors"
	"fmt"
)

// Code identifies one failure condition.
type Code string

const (
	// initialization / crypto
	CodeInitCrypto    Code = "INIT_CRYPTO"
	CodeNoAesHardware Code = "NO_AES_HARDWARE"
	CodeHashing       Code = "HASHING"
	CodeInvalidCost   Code = "INVALID_COST"
	CodeInvalidCipher Code = "INVALID_CIPHER"
	CodeEncrypt       Code = "ENCRYPT"
	CodeDecrypt       Code = "DECRYPT"

	// super block / uri
	CodeInvalidUri        Code = "INVALID_URI"
	CodeInvalidSuperBlk   Code = "INVALID_SUPER_BLOCK"
	CodeCorruptedSuperBlk Code = "CORRUPTED_SUPER_BLOCK"
	CodeWrongVersion      Code = "WRONG_VERSION"
	CodeNoEntity          Code = "NO_ENTITY"

	// lock / transaction
	CodeRepoOpened  Code = "REPO_OPENED"
	CodeRepoClosed  Code = "REPO_CLOSED"
	CodeRepoExists  Code = "REPO_EXISTS"
	CodeInTrans     Code = "IN_TRANS"
	CodeNotInTrans  Code = "NOT_IN_TRANS"
	CodeNoTrans     Code = "NO_TRANS"
	CodeUncompleted Code = "UNCOMPLETED"
	CodeInUse       Code = "IN_USE"

	// path / tree
	CodeInvalidPath   Code = "INVALID_PATH"
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeIsRoot        Code = "IS_ROOT"
	CodeIsDir         Code = "IS_DIR"
	CodeNotDir        Code = "NOT_DIR"
	CodeIsFile        Code = "IS_FILE"
	CodeNotFile       Code = "NOT_FILE"
	CodeNotEmpty      Code = "NOT_EMPTY"
	CodeNoVersion     Code = "NO_VERSION"

	// access
	CodeReadOnly    Code = "READ_ONLY"
	CodeCannotRead  Code = "CANNOT_READ"
	CodeCannotWrite Code = "CANNOT_WRITE"
	CodeNotWrite    Code = "NOT_WRITE"
	CodeNotFinish   Code = "NOT_FINISH"
	CodeClosed      Code = "CLOSED"

	// io / transport
	CodeIo         Code = "IO"
	CodeEncode     Code = "ENCODE"
	CodeDecode     Code = "DECODE"
	CodeNetwork    Code = "NETWORK"
	CodeHttpStatus Code = "HTTP_STATUS"

	// argument
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// Error is the one failure type. Msg is human readable; Err is the
// optional underlying cause.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Msg, e.Code, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Msg, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is 只比较 Code，所以 errors.Is(err, fserr.ErrNotFound) 对任意 NOT_FOUND 都成立
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates an error with the given code.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying cause. A nil cause returns nil.
// If the cause already carries a code it is returned unchanged.
func Wrap(code Code, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code carried by err, or "" when err has none.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// Sentinels for errors.Is matching.
var (
	ErrInitCrypto        = &Error{Code: CodeInitCrypto, Msg: "crypto initialization failed"}
	ErrInvalidCost       = &Error{Code: CodeInvalidCost, Msg: "invalid cost"}
	ErrInvalidCipher     = &Error{Code: CodeInvalidCipher, Msg: "invalid cipher"}
	ErrEncrypt           = &Error{Code: CodeEncrypt, Msg: "encrypt failed"}
	ErrDecrypt           = &Error{Code: CodeDecrypt, Msg: "decrypt failed"}
	ErrInvalidUri        = &Error{Code: CodeInvalidUri, Msg: "invalid uri"}
	ErrInvalidSuperBlk   = &Error{Code: CodeInvalidSuperBlk, Msg: "invalid super block"}
	ErrCorruptedSuperBlk = &Error{Code: CodeCorruptedSuperBlk, Msg: "corrupted super block"}
	ErrWrongVersion      = &Error{Code: CodeWrongVersion, Msg: "wrong version"}
	ErrRepoOpened        = &Error{Code: CodeRepoOpened, Msg: "repo is opened"}
	ErrRepoClosed        = &Error{Code: CodeRepoClosed, Msg: "repo is closed"}
	ErrRepoExists        = &Error{Code: CodeRepoExists, Msg: "repo already exists"}
	ErrInvalidPath       = &Error{Code: CodeInvalidPath, Msg: "invalid path"}
	ErrNotFound          = &Error{Code: CodeNotFound, Msg: "not found"}
	ErrAlreadyExists     = &Error{Code: CodeAlreadyExists, Msg: "already exists"}
	ErrIsRoot            = &Error{Code: CodeIsRoot, Msg: "is root"}
	ErrIsDir             = &Error{Code: CodeIsDir, Msg: "is dir"}
	ErrNotDir            = &Error{Code: CodeNotDir, Msg: "not dir"}
	ErrIsFile            = &Error{Code: CodeIsFile, Msg: "is file"}
	ErrNotFile           = &Error{Code: CodeNotFile, Msg: "not file"}
	ErrNotEmpty          = &Error{Code: CodeNotEmpty, Msg: "not empty"}
	ErrNoVersion         = &Error{Code: CodeNoVersion, Msg: "no such version"}
	ErrReadOnly          = &Error{Code: CodeReadOnly, Msg: "opened as read only"}
	ErrCannotRead        = &Error{Code: CodeCannotRead, Msg: "cannot read"}
	ErrCannotWrite       = &Error{Code: CodeCannotWrite, Msg: "cannot write"}
	ErrNotFinish         = &Error{Code: CodeNotFinish, Msg: "pending writes not finished"}
	ErrClosed            = &Error{Code: CodeClosed, Msg: "handle is closed"}
	ErrIo                = &Error{Code: CodeIo, Msg: "io error"}
	ErrNetwork           = &Error{Code: CodeNetwork, Msg: "network error"}
	ErrInvalidArgument   = &Error{Code: CodeInvalidArgument, Msg: "invalid argument"}
)
