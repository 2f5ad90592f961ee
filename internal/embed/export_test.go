package embed

var MeanPool = meanPool
