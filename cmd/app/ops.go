package main

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

func doGraphGet(ctx context.Context, cfg cliConfig, tenant string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "graph.get", map[string]any{"tenant": tenant}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	path := "/api/graph"
	if tenant != "" {
		path += "?tenant=" + url.QueryEscape(tenant)
	}
	return client.request(ctx, http.MethodGet, path, nil, out)
}

func doTenantsList(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "tenants.list", map[string]any{}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/tenants", nil, out)
}

func doTagsStats(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "tags.stats", map[string]any{}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/tags/statistics", nil, out)
}

func doTagsGet(ctx context.Context, cfg cliConfig, name string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "tags.get", map[string]any{"name": name}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/tags/"+url.PathEscape(name), nil, out)
}

func doSearch(ctx context.Context, cfg cliConfig, tagID string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "search.run", map[string]any{"tag_id": tagID}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/search?tag_id="+url.QueryEscape(tagID), nil, out)
}

func doExport(ctx context.Context, cfg cliConfig, tenant string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "export.run", map[string]any{"tenant": tenant}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	path := "/api/export"
	if tenant != "" {
		path += "?tenant=" + url.QueryEscape(tenant)
	}
	return client.request(ctx, http.MethodGet, path, nil, out)
}

func doLogin(ctx context.Context, cfg cliConfig, password, tokenName string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "auth.login", map[string]any{
			"password":   password,
			"token_name": tokenName,
		}, out)
	}
	client := newAPIClient(cfg.Server, "")
	return client.request(ctx, http.MethodPost, "/api/auth/login", map[string]any{
		"password":   password,
		"token_name": tokenName,
	}, out)
}

func doLogout(ctx context.Context, cfg cliConfig) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "auth.logout", map[string]any{"token": cfg.Token}, nil)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func doImportsList(ctx context.Context, cfg cliConfig, limit int, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "imports.list", map[string]any{"token": cfg.Token, "limit": limit}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/imports?limit="+strconv.Itoa(limit), nil, out)
}
