// 配置文件轮询监听与热更新。
package config

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"
)

// --- 文件监听 ---

// Watcher 轮询单个配置文件的修改时间
type Watcher struct {
	path     string
	interval time.Duration
	logger   *zap.Logger
	lastMod  time.Time
}

// NewWatcher 创建文件监听器，interval <= 0 时默认 1 秒
func NewWatcher(path string, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{path: path, interval: interval, logger: logger.With(zap.String("component", "config_watcher"))}
	if info, err := os.Stat(path); err == nil {
		w.lastMod = info.ModTime()
	} else {
		w.logger.Warn("config file does not exist, will watch for creation", zap.String("path", path))
	}
	return w
}

// Run 阻塞直到 ctx 结束，每次检测到修改调用一次 onChange
func (w *Watcher) Run(ctx context.Context, onChange func()) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.changed() {
				w.logger.Debug("config file changed", zap.String("path", w.path))
				onChange()
			}
		}
	}
}

func (w *Watcher) changed() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		return false
	}
	if info.ModTime().After(w.lastMod) {
		w.lastMod = info.ModTime()
		return true
	}
	return false
}

// --- 热更新 ---

// ReloadCallback 在配置成功重载后调用
type ReloadCallback func(oldConfig, newConfig *Config)

// hotReloadable 运行时可生效的字段路径
var hotReloadable = map[string]bool{
	"Log.Level":       true,
	"RateLimit.RPS":   true,
	"RateLimit.Burst": true,
	"Trace.MaxItems":  true,
}

// IsHotReloadable 判断字段是否可在运行时生效
func IsHotReloadable(path string) bool {
	return hotReloadable[path]
}

// Reloader 持有当前配置并负责重载
type Reloader struct {
	mu        sync.RWMutex
	current   *Config
	loader    *Loader
	callbacks []ReloadCallback
	logger    *zap.Logger
}

// NewReloader 创建重载器
func NewReloader(current *Config, loader *Loader, logger *zap.Logger) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reloader{current: current, loader: loader, logger: logger.With(zap.String("component", "config_reloader"))}
}

// Current 返回当前配置
func (r *Reloader) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// OnReload 注册回调
func (r *Reloader) OnReload(cb ReloadCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// Reload 重新加载配置；失败时保留当前配置。返回变化的字段路径。
func (r *Reloader) Reload() ([]string, error) {
	next, err := r.loader.Load()
	if err != nil {
		r.logger.Error("config reload failed, keeping current config", zap.Error(err))
		return nil, err
	}

	r.mu.Lock()
	old := r.current
	changed := Diff(old, next)
	if len(changed) == 0 {
		r.mu.Unlock()
		return nil, nil
	}
	r.current = next
	callbacks := append([]ReloadCallback(nil), r.callbacks...)
	r.mu.Unlock()

	for _, path := range changed {
		if IsHotReloadable(path) {
			r.logger.Info("config field reloaded", zap.String("field", path))
		} else {
			r.logger.Warn("config field changed, restart required", zap.String("field", path))
		}
	}
	for _, cb := range callbacks {
		cb(old, next)
	}
	return changed, nil
}

// Diff 返回两份配置之间不同的叶子字段路径，如 "Trace.MaxItems"
func Diff(a, b *Config) []string {
	var out []string
	diffStruct("", reflect.ValueOf(a).Elem(), reflect.ValueOf(b).Elem(), &out)
	return out
}

func diffStruct(prefix string, a, b reflect.Value, out *[]string) {
	t := a.Type()
	for i := 0; i < a.NumField(); i++ {
		name := t.Field(i).Name
		if prefix != "" {
			name = fmt.Sprintf("%s.%s", prefix, name)
		}
		fa, fb := a.Field(i), b.Field(i)
		if fa.Kind() == reflect.Struct {
			diffStruct(name, fa, fb, out)
			continue
		}
		if !reflect.DeepEqual(fa.Interface(), fb.Interface()) {
			*out = append(*out, name)
		}
	}
}
