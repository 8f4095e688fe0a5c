package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const asyncTimeout = 200 * time.Millisecond

// AsyncCacheFill rellena la caché en background tras una lectura del repositorio.
// Usa SetIfAbsent: un relleno tardío nunca pisa el valor que dejó una escritura posterior.
func AsyncCacheFill(cache Cache, key string, value interface{}, ttl int, log *zap.Logger) {
	if cache == nil {
		return
	}

	go func() {
		// context.Background() a propósito: la petición original puede haber terminado ya.
		cacheCtx, cancel := context.WithTimeout(context.Background(), asyncTimeout)
		defer cancel()

		if _, err := cache.SetIfAbsent(cacheCtx, key, value, ttl); err != nil {
			log.Warn("Cache fill failed",
				zap.String("key", key),
				zap.Error(err))
		}
	}()
}

// RefreshCache guarda de forma síncrona el valor recién escrito en el repositorio.
// Si no se puede guardar, borra la clave para no dejar un valor antiguo.
func RefreshCache(ctx context.Context, cache Cache, key string, value interface{}, ttl int, log *zap.Logger) {
	if cache == nil {
		return
	}

	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), asyncTimeout)
	defer cancel()

	if err := cache.Set(cacheCtx, key, value, ttl); err != nil {
		log.Warn("Cache refresh failed, invalidating",
			zap.String("key", key),
			zap.Error(err))
		InvalidateCache(cacheCtx, cache, key, log)
	}
}

// InvalidateCache elimina la clave de forma síncrona.
func InvalidateCache(ctx context.Context, cache Cache, key string, log *zap.Logger) {
	if cache == nil {
		return
	}

	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), asyncTimeout)
	defer cancel()

	if err := cache.Delete(cacheCtx, key); err != nil {
		log.Warn("Cache deletion failed",
			zap.String("key", key),
			zap.Error(err))
	}
}
