package gateway

var MeanPing = meanPing
