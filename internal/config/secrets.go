package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService 系统钥匙串中本应用的服务名
const KeyringService = "recruit-dashboard"

// ErrAPIKeyNotFound 配置、环境变量和钥匙串中都没有找到 API Key
var ErrAPIKeyNotFound = errors.New("evaluator API key not found (set GEMINI_API_KEY / LLM_API_KEY, evaluator.api_key, or store it in the keyring)")

// ResolveAPIKey 按 配置/环境变量 → 系统钥匙串 的顺序获取评估服务的 API Key
func ResolveAPIKey(cfg EvaluatorConfig) (string, error) {
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		return key, nil
	}
	account := keyringAccount(cfg)
	key, err := keyring.Get(KeyringService, account)
	if err == nil && strings.TrimSpace(key) != "" {
		return strings.TrimSpace(key), nil
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("读取钥匙串失败 (account=%s): %w", account, err)
	}
	return "", ErrAPIKeyNotFound
}

// StoreAPIKey 把 API Key 写入系统钥匙串
func StoreAPIKey(cfg EvaluatorConfig, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return errors.New("api key is empty")
	}
	return keyring.Set(KeyringService, keyringAccount(cfg), strings.TrimSpace(apiKey))
}

// DeleteAPIKey 从系统钥匙串删除 API Key，不存在时不报错
func DeleteAPIKey(cfg EvaluatorConfig) error {
	err := keyring.Delete(KeyringService, keyringAccount(cfg))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func keyringAccount(cfg EvaluatorConfig) string {
	if cfg.KeyringAccount != "" {
		return cfg.KeyringAccount
	}
	if cfg.Provider != "" {
		return cfg.Provider
	}
	return ProviderGemini
}
