package observability

/*
RemoteObservability gets feedback on the remote loading process.
It is mostly used for UX purposes (the generate command progress bar)
*/
type RemoteObservability interface {
	Init(nbTotalAssets int)
	LoadingAsset(entity string, nb int)
}
