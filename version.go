package companion

// Version is the released version of the module and its CLI.
const Version = "0.1.0"
