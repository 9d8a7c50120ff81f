// Package logger provides structured logging for the trading stack, backed
// by zerolog. Components obtain tagged sub-loggers via WithComponent, and
// call sites attach structured fields rather than formatting messages:
//
//	log := logger.NewDefault("autoquant")
//	log.WithComponent("broker").Info("order submitted",
//	    logger.Fields("symbol", "AAPL", "client_order_id", id))
package logger
