package service

import "github.com/yal42d-debug/dosya-paylas/pkg/logger"

var log = logger.New()
