// Package aggregation provides the pipeline compilation core of the talos
// ODM. This file defines the operator registry: the read-only table mapping
// every supported expression-language function name to its native operator
// keyword and argument shape.
package aggregation

// argShape describes how an operator's evaluated arguments are assembled on
// the wire.
type argShape int

const (
	// shapeSingle: the operator takes the lone argument directly, not
	// wrapped in an array ({"$abs": "$price"}).
	shapeSingle argShape = iota
	// shapeOrderedList: arguments become a native array in call order
	// ({"$pow": ["$x", 2]}).
	shapeOrderedList
	// shapeNamedMap: positional arguments are projected onto a fixed list
	// of parameter names ({"$cond": {"if": ..., "then": ..., "else": ...}}).
	shapeNamedMap
)

// methodReference is an immutable registry entry. Entries are constructed
// once at package initialization and never mutated afterwards.
type methodReference struct {
	operator   string   // native operator keyword, including the "$" sigil
	shape      argShape // argument assembly rule
	parameters []string // parameter names, shapeNamedMap only
}

// parameterAt returns the parameter name for the given argument position.
// Calling it on a non-named-map entry is a construction-level bug, so it
// panics instead of returning an error.
func (m methodReference) parameterAt(index int) string {
	if m.shape != shapeNamedMap {
		panic("aggregation: method reference " + m.operator + " has no named parameters")
	}
	return m.parameters[index]
}

func singleRef(operator string) methodReference {
	return methodReference{operator: operator, shape: shapeSingle}
}

func listRef(operator string) methodReference {
	return methodReference{operator: operator, shape: shapeOrderedList}
}

func mapRef(operator string, parameters ...string) methodReference {
	if len(parameters) == 0 {
		panic("aggregation: named-map method reference " + operator + " declared without parameter names")
	}
	return methodReference{operator: operator, shape: shapeNamedMap, parameters: parameters}
}

// methodReferences maps every supported function name of the expression
// language to its registry entry. The table is built once and treated as
// read-only; there is no runtime mutation API.
var methodReferences = map[string]methodReference{
	// arithmetic
	"abs":      singleRef("$abs"),
	"add":      listRef("$add"),
	"ceil":     singleRef("$ceil"),
	"divide":   listRef("$divide"),
	"exp":      singleRef("$exp"),
	"floor":    singleRef("$floor"),
	"ln":       singleRef("$ln"),
	"log":      listRef("$log"),
	"log10":    singleRef("$log10"),
	"mod":      listRef("$mod"),
	"multiply": listRef("$multiply"),
	"pow":      listRef("$pow"),
	"round":    listRef("$round"),
	"sqrt":     singleRef("$sqrt"),
	"subtract": listRef("$subtract"),
	"trunc":    listRef("$trunc"),

	// trigonometry
	"sin":              singleRef("$sin"),
	"sinh":             singleRef("$sinh"),
	"asin":             singleRef("$asin"),
	"asinh":            singleRef("$asinh"),
	"cos":              singleRef("$cos"),
	"cosh":             singleRef("$cosh"),
	"acos":             singleRef("$acos"),
	"acosh":            singleRef("$acosh"),
	"tan":              singleRef("$tan"),
	"tanh":             singleRef("$tanh"),
	"atan":             singleRef("$atan"),
	"atan2":            listRef("$atan2"),
	"atanh":            singleRef("$atanh"),
	"degreesToRadians": singleRef("$degreesToRadians"),
	"radiansToDegrees": singleRef("$radiansToDegrees"),

	// string
	"concat":       listRef("$concat"),
	"indexOfBytes": listRef("$indexOfBytes"),
	"indexOfCP":    listRef("$indexOfCP"),
	"ltrim":        mapRef("$ltrim", "input", "chars"),
	"regexFind":    mapRef("$regexFind", "input", "regex", "options"),
	"regexFindAll": mapRef("$regexFindAll", "input", "regex", "options"),
	"regexMatch":   mapRef("$regexMatch", "input", "regex", "options"),
	"replaceAll":   mapRef("$replaceAll", "input", "find", "replacement"),
	"replaceOne":   mapRef("$replaceOne", "input", "find", "replacement"),
	"rtrim":        mapRef("$rtrim", "input", "chars"),
	"split":        listRef("$split"),
	"strcasecmp":   listRef("$strcasecmp"),
	"strLenBytes":  singleRef("$strLenBytes"),
	"strLenCP":     singleRef("$strLenCP"),
	"substr":       listRef("$substr"),
	"substrBytes":  listRef("$substrBytes"),
	"substrCP":     listRef("$substrCP"),
	"toLower":      singleRef("$toLower"),
	"toUpper":      singleRef("$toUpper"),
	"trim":         mapRef("$trim", "input", "chars"),

	// comparison
	"cmp": listRef("$cmp"),
	"eq":  listRef("$eq"),
	"gt":  listRef("$gt"),
	"gte": listRef("$gte"),
	"lt":  listRef("$lt"),
	"lte": listRef("$lte"),
	"ne":  listRef("$ne"),

	// boolean
	"and": listRef("$and"),
	"not": listRef("$not"),
	"or":  listRef("$or"),

	// conditional
	"cond":   mapRef("$cond", "if", "then", "else"),
	"ifNull": listRef("$ifNull"),
	"switch": mapRef("$switch", "branches", "default"),

	// array
	"arrayElemAt":   listRef("$arrayElemAt"),
	"arrayToObject": singleRef("$arrayToObject"),
	"concatArrays":  listRef("$concatArrays"),
	"filter":        mapRef("$filter", "input", "as", "cond"),
	"first":         singleRef("$first"),
	"in":            listRef("$in"),
	"indexOfArray":  listRef("$indexOfArray"),
	"isArray":       singleRef("$isArray"),
	"last":          singleRef("$last"),
	"map":           mapRef("$map", "input", "as", "in"),
	"range":         listRef("$range"),
	"reduce":        mapRef("$reduce", "input", "initialValue", "in"),
	"reverseArray":  singleRef("$reverseArray"),
	"size":          singleRef("$size"),
	"slice":         listRef("$slice"),
	"zip":           mapRef("$zip", "inputs", "useLongestLength", "defaults"),

	// set
	"allElementsTrue": singleRef("$allElementsTrue"),
	"anyElementTrue":  singleRef("$anyElementTrue"),
	"setDifference":   listRef("$setDifference"),
	"setEquals":       listRef("$setEquals"),
	"setIntersection": listRef("$setIntersection"),
	"setIsSubset":     listRef("$setIsSubset"),
	"setUnion":        listRef("$setUnion"),

	// object
	"let":           mapRef("$let", "vars", "in"),
	"literal":       singleRef("$literal"),
	"mergeObjects":  listRef("$mergeObjects"),
	"objectToArray": singleRef("$objectToArray"),

	// date
	"dateAdd":        mapRef("$dateAdd", "startDate", "unit", "amount", "timezone"),
	"dateDiff":       mapRef("$dateDiff", "startDate", "endDate", "unit", "timezone"),
	"dateFromParts":  mapRef("$dateFromParts", "year", "month", "day", "hour", "minute", "second", "millisecond", "timezone"),
	"dateFromString": mapRef("$dateFromString", "dateString", "format", "timezone", "onError", "onNull"),
	"dateToParts":    mapRef("$dateToParts", "date", "timezone", "iso8601"),
	"dateToString":   mapRef("$dateToString", "format", "date", "timezone", "onNull"),
	"dayOfMonth":     singleRef("$dayOfMonth"),
	"dayOfWeek":      singleRef("$dayOfWeek"),
	"dayOfYear":      singleRef("$dayOfYear"),
	"hour":           singleRef("$hour"),
	"isoDayOfWeek":   singleRef("$isoDayOfWeek"),
	"isoWeek":        singleRef("$isoWeek"),
	"isoWeekYear":    singleRef("$isoWeekYear"),
	"millisecond":    singleRef("$millisecond"),
	"minute":         singleRef("$minute"),
	"month":          singleRef("$month"),
	"second":         singleRef("$second"),
	"week":           singleRef("$week"),
	"year":           singleRef("$year"),

	// type inspection and conversion
	"convert":    mapRef("$convert", "input", "to", "onError", "onNull"),
	"isNumber":   singleRef("$isNumber"),
	"toBool":     singleRef("$toBool"),
	"toDate":     singleRef("$toDate"),
	"toDecimal":  singleRef("$toDecimal"),
	"toDouble":   singleRef("$toDouble"),
	"toInt":      singleRef("$toInt"),
	"toLong":     singleRef("$toLong"),
	"toObjectId": singleRef("$toObjectId"),
	"toString":   singleRef("$toString"),
	"type":       singleRef("$type"),

	// accumulators (usable in expression position over arrays)
	"addToSet":   singleRef("$addToSet"),
	"avg":        singleRef("$avg"),
	"max":        singleRef("$max"),
	"min":        singleRef("$min"),
	"push":       singleRef("$push"),
	"stdDevPop":  singleRef("$stdDevPop"),
	"stdDevSamp": singleRef("$stdDevSamp"),
	"sum":        singleRef("$sum"),
}

// methodReferenceFor looks up a registry entry by the exact function name as
// it appears at the call site (the text before the opening parenthesis).
// Unregistered names return ok == false; callers must treat that as "not a
// recognized operator", not as a crash.
func methodReferenceFor(name string) (methodReference, bool) {
	ref, ok := methodReferences[name]
	return ref, ok
}
