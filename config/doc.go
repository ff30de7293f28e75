// Package config carrega a configuração do gateway.
//
// Parâmetros de processo vêm de variáveis de ambiente (caarlos0/env), com um arquivo
// .env opcional carregado antes (godotenv). As regras de rate limit vêm de um
// documento YAML:
//
//	enabled: true
//	strategy: drop
//	algorithm: tokenBucket
//	config:
//	  tokenBucket: {capacity: 1000, refillRate: 100, refillUnit: S}
//	rules:
//	  - id: api
//	    resourcePath: /api/**
//	    limitBy: [ip]
//	    algorithm: tokenBucket
//	    config:
//	      tokenBucket: {capacity: 20, refillRate: 1, refillUnit: S}
//	  - resourcePath: /reports/{id}
//	    limitBy: [userId]
//	    algorithm: leakyBucket
//	    config:
//	      leakyBucket: {capacity: 10, outFlowPerSec: 2}
package config
