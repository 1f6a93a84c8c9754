package storage

import (
	"net/url"
	"strings"

	"vaultfs/pkg/fserr"
)

// 支持的 URI scheme
const (
	SchemeMem      = "mem"
	SchemeFile     = "file"
	SchemeZbox     = "zbox"
	SchemeSQLite   = "sqlite"
	SchemePostgres = "postgres"
)

// 每种 scheme 允许的 query 参数；postgres 的参数原样交给驱动
var allowedParams = map[string][]string{
	SchemeMem:    {"cache"},
	SchemeFile:   {"cache"},
	SchemeZbox:   {"cache", "endpoint", "region"},
	SchemeSQLite: {"cache"},
}

// Location 是解析后的仓库位置
//
//	scheme://[authority]/path[?key=value&...]
type Location struct {
	Scheme string
	Ident  string // scheme 之后、query 之前的部分
	Params url.Values
	Raw    string
}

// Canonical 去掉 query，用作进程内锁表的 Key
func (l Location) Canonical() string {
	return l.Scheme + "://" + l.Ident
}

func (l Location) String() string { return l.Raw }

// ParseLocation 解析并校验 URI，不做任何 I/O
func ParseLocation(uri string) (Location, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok || scheme == "" {
		return Location{}, fserr.New(fserr.CodeInvalidUri, "uri %q has no scheme", uri)
	}

	body, query, _ := strings.Cut(rest, "?")
	if body == "" {
		return Location{}, fserr.New(fserr.CodeInvalidUri, "uri %q has no location", uri)
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		return Location{}, fserr.Wrap(fserr.CodeInvalidUri, err, "uri %q has a malformed query", uri)
	}

	loc := Location{Scheme: scheme, Ident: body, Params: params, Raw: uri}

	switch scheme {
	case SchemeMem, SchemeFile, SchemeSQLite:
	case SchemeZbox:
		access, bucket, found := strings.Cut(body, "@")
		if !found || access == "" || bucket == "" || strings.HasPrefix(bucket, "/") {
			return Location{}, fserr.New(fserr.CodeInvalidUri, "zbox uri needs access-key@bucket, got %q", body)
		}
	case SchemePostgres:
		return loc, nil
	default:
		return Location{}, fserr.New(fserr.CodeInvalidUri, "unsupported storage %q", scheme)
	}

	for key := range params {
		if !contains(allowedParams[scheme], key) {
			return Location{}, fserr.New(fserr.CodeInvalidUri, "unknown parameter %q for %s storage", key, scheme)
		}
	}
	return loc, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
